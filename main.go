package main

import "photoingest/cmd"

func main() {
	cmd.Execute()
}
