package main

import (
	"context"
	"log"

	"github.com/LuuuXXX/crater-ohos/internal/daemon"
)

func main() {
	if err := daemon.Run(context.Background(), daemon.Options{}); err != nil {
		log.Fatalf("craterd: %v", err)
	}
}
