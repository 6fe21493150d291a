package main

import "github.com/jake-scott/blink-homekit/cmd"

func main() {
	cmd.Execute()
}
