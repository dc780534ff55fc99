// Package cli provides the interactive daybook command-line client.
//
// It wires configuration, the local store, the sync engine and an
// interactive REPL. Typical flow: ask for the passphrase, start the
// connectivity watcher and the sync scheduler, then execute user commands.
// Edits are synced in the background after a short debounce window and
// right away whenever the server becomes reachable again.
//
// With an empty server address the app runs against an in-process remote,
// so every command works without a server.
package cli
