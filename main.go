package main

import "lanrtc/cmd"

func main() {
	cmd.Execute()
}
