// Package config loads the realtime server configuration.
//
// Sources, in increasing precedence:
//  1. built-in defaults,
//  2. the `server:` section of an optional YAML file,
//  3. environment variables (PORT, REALTIME_PATH, ALLOWED_ORIGINS,
//     LOG_LEVEL, GRPC_PORT).
//
// Secrets never live in the file. The file names the environment variables
// that hold them (auth.jwt.secret_env, auth.emit.secret_env), defaulting to
// REALTIME_JWT_SECRET and REALTIME_EMIT_SECRET. Both must be non-empty.
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) reloads the file on change so the origin
// allow-list and log level can be updated without a restart.
package config
