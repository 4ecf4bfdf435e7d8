// cmd/carctl/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"carrental/internal/catalog"
	"carrental/internal/client"
	"carrental/internal/rental"
)

const usage = `usage: carctl [flags] <command> [args]

commands:
  cars [available]                       list cars
  car <id>                               show a car
  rentals [status]                       list your rentals
  rent <car-id> <from> <to>              rent a car (dates as YYYY-MM-DD)
  return <rental-id>                     return a rental
  history <rental-id>                    show a rental's events

flags:
`

func main() {
	addr := flag.String("addr", envOr("CARRENTAL_ADDR", "http://localhost:8080"), "API base URL")
	email := flag.String("email", os.Getenv("CARRENTAL_EMAIL"), "login email")
	password := flag.String("password", os.Getenv("CARRENTAL_PASSWORD"), "login password")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(*addr)
	if *email != "" {
		authed, _, err := c.Login(ctx, *email, *password)
		if err != nil {
			fail(err)
		}
		c = authed
	}

	out, err := dispatch(ctx, c, flag.Arg(0), flag.Args()[1:])
	if err != nil {
		fail(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

func dispatch(ctx context.Context, c *client.Client, cmd string, args []string) (any, error) {
	switch cmd {
	case "cars":
		var filter catalog.CarFilter
		if len(args) > 0 && args[0] == "available" {
			available := true
			filter.Available = &available
		}
		return c.ListCars(ctx, filter)
	case "car":
		id, err := idArg(args)
		if err != nil {
			return nil, err
		}
		return c.GetCar(ctx, id)
	case "rentals":
		var status rental.Status
		if len(args) > 0 {
			status = rental.Status(args[0])
		}
		return c.Rentals(ctx, status)
	case "rent":
		if len(args) != 3 {
			return nil, errors.New("rent needs <car-id> <from> <to>")
		}
		carID, err := idArg(args)
		if err != nil {
			return nil, err
		}
		return c.Rent(ctx, rental.RentRequest{CarID: carID, RentalDate: args[1], ExpectedReturnDate: args[2]})
	case "return":
		id, err := idArg(args)
		if err != nil {
			return nil, err
		}
		return c.Return(ctx, id)
	case "history":
		id, err := idArg(args)
		if err != nil {
			return nil, err
		}
		return c.History(ctx, id)
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func idArg(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, errors.New("missing id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "carctl: %v\n", err)
	os.Exit(1)
}
