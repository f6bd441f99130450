package main

import "github.com/feastly/reminder-gateway/cmd"

func main() {
	cmd.Execute()
}
