package lib

import (
	"errors"
	"log"
	"os"
)

func Load(path string) error {
	if path == "" {
		os.Exit(2) // want `os.Exit terminates the process`
	}
	if path == "-" {
		log.Fatalf("bad path %q", path) // want `log.Fatalf terminates the process`
	}
	log.Printf("loading %s", path)
	return errors.New("not implemented")
}

func Must(err error) {
	if err != nil {
		log.Fatal(err) // want `log.Fatal terminates the process`
	}
}
