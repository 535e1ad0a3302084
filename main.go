package main

import "github.com/impostorwatch/impostorwatch/cmd"

func main() {
	cmd.Execute()
}
