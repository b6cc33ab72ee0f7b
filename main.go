package main

import "github.com/jake-scott/alice-bridge/cmd"

func main() {
	cmd.Execute()
}
