package main

import "github.com/oshokin/node-bin-gen/cmd/node-bin-setup/cmd"

func main() {
	cmd.Execute()
}
