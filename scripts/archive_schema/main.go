package main

import (
	"log"

	"github.com/mahaj/chatter-box/pkg/archive"
	"github.com/mahaj/chatter-box/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	if err := archive.EnsureSchema(cfg.ScyllaHosts, cfg.ScyllaKeyspace); err != nil {
		log.Fatal(err)
	}
	log.Printf("Keyspace %s and tables %v are ready", cfg.ScyllaKeyspace, archive.Tables)
}
