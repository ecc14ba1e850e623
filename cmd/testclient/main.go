package main

import (
	"context"
	"flag"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"

	grpcapi "conversation-analytics-service/internal/api/grpc"
)

func main() {
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	jobName := flag.String("job", "call-1", "ASR job name")
	process := flag.Bool("process", true, "Process the job before fetching it")
	flag.Parse()

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Println("Connected to server")

	client := grpcapi.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if *process {
		log.Printf("Processing job: %s", *jobName)
		res, err := client.ProcessJob(ctx, *jobName)
		if err != nil {
			log.Fatalf("failed to process job: %v", err)
		}
		log.Printf("Processed: %s", protojson.Format(res))
	}

	record, err := client.GetConversation(ctx, *jobName)
	if err != nil {
		log.Fatalf("failed to get conversation: %v", err)
	}
	log.Printf("Conversation: %s", protojson.Format(record))
}
