package main

import "github.com/davarch/apt-publisher/cmd/apt-publisher/cli"

func main() {
	cli.Execute()
}
