package main

import "github.com/gitbugactions/gitbug-java/cmd"

func main() {
	cmd.Execute()
}
