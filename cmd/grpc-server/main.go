package main

import (
	"flag"
	"net"

	"releasehub/internal/app"
	"releasehub/internal/grpcserver"
	"releasehub/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "config file")
	flag.Parse()

	a, err := app.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	addr := a.Config.Server.GRPCAddr
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logging.Fatal().Err(err).Str("addr", addr).Msg("grpc listen failed")
	}

	gs := grpcserver.New(grpcserver.NewServer(a.Calendar, a.Titles, a.Favorites))
	logging.Info().Str("addr", addr).Msg("gRPC server listening")
	if err := gs.Serve(lis); err != nil {
		logging.Fatal().Err(err).Msg("grpc server stopped")
	}
}
