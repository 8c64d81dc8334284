package main

import "messaging-sync/cmd"

func main() {
	cmd.Execute()
}
