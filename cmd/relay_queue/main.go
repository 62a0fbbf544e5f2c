package main

import "github.com/parity-sale/relay-queue/cmd/relay_queue/cmd"

func main() {
	cmd.Execute()
}
