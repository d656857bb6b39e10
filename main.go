package main

import (
	"StudioLink/cmd"
)

func main() {
	cmd.Execute()
}
