package main

import "github.com/funvibe/glitteral/pkg/cli"

func main() {
	cli.Run()
}
