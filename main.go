package main

import (
	"log"

	"ticket-shop/cmd"
	_ "ticket-shop/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
