package main

import "github.com/fluxbyte/chatgate/cmd"

func main() {
	cmd.Execute()
}
