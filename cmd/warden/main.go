package main

import "github.com/wardenlabs/warden/cmd/warden/cmd"

func main() {
	cmd.Execute()
}
