package main

import (
	"github.com/CampusBite/CampusBite-Backend/api"
)

var envPath string = "."

func main() {
	server := api.NewServer(envPath)
	server.Start()
}
