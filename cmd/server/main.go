package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/royal-restaurant/api/internal/config"
	"github.com/royal-restaurant/api/internal/notify"
	"github.com/royal-restaurant/api/internal/payment"
	"github.com/royal-restaurant/api/internal/router"
	"github.com/royal-restaurant/api/internal/service"
	"github.com/royal-restaurant/api/internal/store"
	"github.com/royal-restaurant/api/internal/ws"
)

func main() {
	cfg := config.Load()

	if cfg.AdminToken == "" {
		log.Println("WARNING: ADMIN_TOKEN is not set; admin panel is disabled")
	}
	if !cfg.PayPal.Sandbox {
		log.Println("PayPal running in LIVE mode")
	}

	st, err := store.Open(cfg.DataFile)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	var notifier service.Notifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			log.Printf("WARNING: telegram setup failed, notifications disabled: %v", err)
		} else {
			notifier = tg
		}
	} else {
		log.Println("WARNING: telegram credentials missing, notifications disabled")
	}

	hub := ws.NewHub()
	go hub.Run()

	gateway := payment.New(cfg.PayPal)
	engine := service.NewOrderEngine(st, gateway, notifier, hub, cfg.AdminToken)

	r := router.New(cfg, st, engine, hub)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Starting server on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal(err)
	}
}
