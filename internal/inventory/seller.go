// Package inventory turns harvested produce into gold. Produce piles up
// from both the own farm and steals; selling it is what funds replanting.
package inventory

import (
	"context"
	"log"
	"os"
	"time"

	"farmfleet.dev/internal/protocol"
)

// Caller issues one correlated request. Satisfied by *session.Session.
type Caller interface {
	Call(ctx context.Context, service, method string, req, reply any) error
}

type Config struct {
	Interval time.Duration // default 1h
	Logger   *log.Logger
}

// Seller periodically sweeps the bag and sells everything in the produce
// id range.
type Seller struct {
	call Caller
	cfg  Config
	log  *log.Logger

	onSold func(gold int64)
}

func NewSeller(call Caller, cfg Config) *Seller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[sell] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Seller{call: call, cfg: cfg, log: cfg.Logger}
}

// OnSold registers a callback with the gold earned per sweep. Must be set
// before Run.
func (s *Seller) OnSold(fn func(gold int64)) { s.onSold = fn }

func (s *Seller) Run(ctx context.Context) {
	for {
		gold, err := s.RunOnce(ctx)
		if err != nil {
			s.log.Printf("sweep: %v", err)
		} else if gold > 0 {
			s.log.Printf("sold produce for %d gold", gold)
			if s.onSold != nil {
				s.onSold(gold)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.Interval):
		}
	}
}

// RunOnce sells every produce stack in the bag and returns the gold
// earned. A failed sale skips that stack only.
func (s *Seller) RunOnce(ctx context.Context) (int64, error) {
	var bag protocol.BagReply
	if err := s.call.Call(ctx, protocol.SvcItem, protocol.MethodBag,
		protocol.BagRequest{}, &bag); err != nil {
		return 0, err
	}
	var total int64
	for _, it := range bag.Items {
		if !protocol.IsProduce(it.ID) || it.Count <= 0 {
			continue
		}
		var reply protocol.SellReply
		if err := s.call.Call(ctx, protocol.SvcItem, protocol.MethodSell,
			protocol.SellRequest{ItemID: it.ID, Count: it.Count}, &reply); err != nil {
			s.log.Printf("sell item %d x%d: %v", it.ID, it.Count, err)
			continue
		}
		total += reply.Gold
	}
	return total, nil
}
