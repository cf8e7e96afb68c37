package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tutorlink/classchat/internal/server"
)

func main() {
	fmt.Println("Starting classchat coordinator...")

	config := server.SetConfig(server.NewConfigFromEnv())

	server.StartHub()

	mux := server.SetupRoutes()
	httpServer := server.CreateServer(config.Port, mux)

	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutdown signal received")

	if err := server.GetHub().Shutdown(config.ShutdownTimeout); err != nil {
		log.Printf("Hub shutdown incomplete: %v", err)
	}
	if err := server.ShutdownServer(httpServer, config.ShutdownTimeout); err != nil {
		log.Printf("HTTP shutdown incomplete: %v", err)
	}
}
