package main

import "github.com/oshokin/node-bin-gen/cmd/node-bin-gen/cmd"

func main() {
	cmd.Execute()
}
