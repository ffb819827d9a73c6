package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env"
	"github.com/trnila/go-sse"
)

type Config struct {
	Listen         string        `env:"CTRL_BIND" envDefault:":3000"`
	SerialPath     string        `env:"CTRL_SERIAL"`
	BaudRate       uint          `env:"CTRL_SERIAL_BAUD" envDefault:"115200"`
	Fake           bool          `env:"CTRL_FAKE" envDefault:"false"`
	SeekTimeout    time.Duration `env:"CTRL_SEEK_TIMEOUT" envDefault:"45s"`
	FloorsPath     string        `env:"CTRL_FLOORS"`
	MulticastGroup string        `env:"CTRL_MCAST"`
}

type server struct {
	ctrl *Controller
}

// seekHandler blocks for the whole approach, the original deployment's
// unavailability window kept on purpose. Competing seeks get a 409.
func (s *server) seekHandler(target Floor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := s.ctrl.Seek(target)
		switch {
		case err == nil:
			fmt.Fprintf(w, "<p>%s</p>", status)
		case errors.Is(err, ErrSeekBusy):
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, "<p>Lift is busy</p>")
		case errors.Is(err, ErrSeekTimeout):
			w.WriteHeader(http.StatusGatewayTimeout)
			fmt.Fprintf(w, "<p>Lift did not reach the %s floor in time</p>", target)
		case errors.Is(err, ErrSeekStopped):
			fmt.Fprintf(w, "<p>%s</p>", offStatus)
		default:
			log.Println(err)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func (s *server) offHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(); err != nil {
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "<p>%s</p>", offStatus)
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		fmt.Printf("%+v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%+v\n", cfg)

	bands := defaultBands()
	if cfg.FloorsPath != "" {
		var err error
		bands, err = loadBands(cfg.FloorsPath)
		if err != nil {
			log.Fatalf("floor table: %v", err)
		}
	}

	broker := NewBroker()
	go broker.Start()

	var rig Rig
	if cfg.Fake {
		rig = NewFakeRig(broker)
	} else {
		if cfg.SerialPath == "" {
			log.Fatal("CTRL_SERIAL not set and CTRL_FAKE disabled")
		}
		rig = OpenSerialRig(cfg, broker)
	}

	ctrl := NewController(rig, bands, cfg.SeekTimeout, broker.publish)

	if cfg.MulticastGroup != "" {
		go startMulticast(cfg.MulticastGroup, broker.Subscribe())
	}

	srv := &server{ctrl: ctrl}
	http.Handle("/", http.FileServer(http.Dir("./static")))
	http.HandleFunc("/ground", srv.seekHandler(Ground))
	http.HandleFunc("/first", srv.seekHandler(First))
	http.HandleFunc("/second", srv.seekHandler(Second))
	http.HandleFunc("/off", srv.offHandler)

	options := sse.Options{
		ClientConnected: func(client *sse.Client) {
			table := map[string]Band{}
			for floor, band := range bands {
				table[floor.String()] = band
			}

			b, err := json.Marshal(table)
			if err != nil {
				fmt.Print(err)
				return
			}

			client.SendMessage(sse.NewMessage("", string(b), "floors"))
		},
	}
	s := sse.NewServer(&options)
	http.Handle("/events/", s)

	go func() {
		sub := broker.Subscribe()
		for event := range sub {
			b, err := json.Marshal(event.data)
			if err != nil {
				fmt.Print(err)
				continue
			}

			s.SendMessage("/events/lift", sse.NewMessage("", string(b), event.name))
		}
	}()

	log.Fatal(http.ListenAndServe(cfg.Listen, nil))
}
