// Command blobnet fetches and inspects streams on the blobnet network.
package main

import "blobnet/cmd/blobnet/cmd"

func main() {
	cmd.Execute()
}
