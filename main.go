package main

import "github.com/citizone/authserver/cmd"

func main() {
	cmd.Execute()
}
