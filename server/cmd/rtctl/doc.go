// Command rtctl is an operator tool for the realtime server. It mints
// development tokens, calls the Emit Gateway and tails a socket.
package main
