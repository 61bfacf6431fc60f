package main

import "github.com/MeKo-Tech/cubeplanet/internal/cmd"

func main() {
	cmd.Execute()
}
