package main

import (
	"log"

	"github.com/dmas-energy/dmas/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
