// Package cli is the interactive VIP club command-line client.
//
// App wires the HTTP API client to a small REPL. A background watcher pings
// the server and flips the prompt between online and offline. Commands:
//
//	register, signup, login          account and session
//	dashboard                        show the member's profile
//	barcode [dir]                    save the membership barcode PNG
//	link                             print a presigned barcode URL
//	fetch [dir]                      download the barcode through that URL
//	logout, help, exit | quit
package cli
