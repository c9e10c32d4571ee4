package main

//go:generate swag init -g cmd/monitor/main.go -o docs

// @title           SAM Opportunities Monitor API
// @version         0.1.0
// @description     Ingest pipeline and query API for SAM.gov contracting opportunities.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
