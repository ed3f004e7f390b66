package main

import "agriassist-cli/cmd"

func main() {
	cmd.Execute()
}
