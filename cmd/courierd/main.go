// Command courierd runs the courier daemon in the foreground, for service
// managers that supervise the process themselves.
package main

import (
	"context"
	"log"
	"os"

	"courier/internal/config"
	"courier/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load(configPath(os.Getenv))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, runOptions(os.Getenv)); err != nil {
		log.Fatalf("courierd: %v", err)
	}
}
