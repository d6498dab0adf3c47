package main

import "github.com/aarchijain1/custom-rag-engine/cmd"

func main() {
	cmd.Execute()
}
