package main

import "github.com/kozaktomas/visagium/cmd"

func main() {
	cmd.Execute()
}
