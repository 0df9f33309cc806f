package rewards

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

// Feature names used as ledger keys. Renaming one resets its marker.
const (
	FeatFreePacks  = "free-packs"
	FeatMailbox    = "mailbox"
	FeatMonthCard  = "month-card"
	FeatAlbum      = "album"
	FeatFertilizer = "fertilizer"
)

// Mall slot that lists the daily free packs.
const freePackSlot int32 = 1

// Mailbox types worth sweeping.
var mailBoxes = []int32{1, 2}

// Daily runs every daily feature that is still due, once per check.
type Daily struct {
	call   Caller
	ledger *Ledger
	log    *log.Logger
}

func NewDaily(call Caller, ledger *Ledger, logger *log.Logger) *Daily {
	if logger == nil {
		logger = log.New(os.Stdout, "[daily] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Daily{call: call, ledger: ledger, log: logger}
}

// Run checks for due features on a coarse interval; the ledger keeps each
// one to once per server day across checks and restarts.
func (d *Daily) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	for {
		d.RunAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// RunAll attempts every due feature. Failures are logged; the ledger has
// already marked the attempt, so a failed feature waits for tomorrow.
func (d *Daily) RunAll(ctx context.Context) {
	features := []struct {
		name string
		fn   func(context.Context) error
	}{
		{FeatFreePacks, d.claimFreePacks},
		{FeatMailbox, d.sweepMailbox},
		{FeatMonthCard, d.claimMonthCards},
		{FeatAlbum, d.claimAlbum},
		{FeatFertilizer, d.useFertilizer},
	}
	for _, f := range features {
		ran, err := d.ledger.Run(ctx, f.name, f.fn)
		if err != nil {
			d.log.Printf("%s: %v", f.name, err)
			continue
		}
		if ran {
			d.log.Printf("%s: claimed", f.name)
		}
	}
}

// claimFreePacks purchases every zero-cost pack in the mall's daily slot.
func (d *Daily) claimFreePacks(ctx context.Context) error {
	var list protocol.MallListReply
	if err := d.call.Call(ctx, protocol.SvcMall, protocol.MethodMallList,
		protocol.MallListRequest{SlotType: freePackSlot}, &list); err != nil {
		return err
	}
	for _, g := range list.Goods {
		if !g.IsFree {
			continue
		}
		if err := d.call.Call(ctx, protocol.SvcMall, protocol.MethodPurchase,
			protocol.PurchaseRequest{GoodsID: g.GoodsID, Count: 1}, nil); err != nil {
			d.log.Printf("free pack %d: %v", g.GoodsID, err)
		}
	}
	return nil
}

func (d *Daily) sweepMailbox(ctx context.Context) error {
	for _, box := range mailBoxes {
		var list protocol.MailListReply
		if err := d.call.Call(ctx, protocol.SvcMail, protocol.MethodMailList,
			protocol.MailListRequest{BoxType: box}, &list); err != nil {
			return err
		}
		for _, m := range list.Mails {
			if !m.HasReward || m.Claimed {
				continue
			}
			if err := d.call.Call(ctx, protocol.SvcMail, protocol.MethodClaimMail,
				protocol.ClaimMailRequest{BoxType: box, MailID: m.ID}, nil); err != nil {
				d.log.Printf("mail %d: %v", m.ID, err)
			}
		}
	}
	return nil
}

func (d *Daily) claimMonthCards(ctx context.Context) error {
	var infos protocol.MonthCardInfosReply
	if err := d.call.Call(ctx, protocol.SvcMall, protocol.MethodMonthCardInfos,
		protocol.MonthCardInfosRequest{}, &infos); err != nil {
		return err
	}
	for _, card := range infos.Infos {
		if !card.CanClaim {
			continue
		}
		if err := d.call.Call(ctx, protocol.SvcMall, protocol.MethodClaimMonthCard,
			protocol.ClaimMonthCardRequest{GoodsID: card.GoodsID}, nil); err != nil {
			d.log.Printf("month card %d: %v", card.GoodsID, err)
		}
	}
	return nil
}

func (d *Daily) claimAlbum(ctx context.Context) error {
	return d.call.Call(ctx, protocol.SvcAlbum, protocol.MethodAlbumClaimAll,
		protocol.AlbumClaimAllRequest{OnlyClaimable: true}, nil)
}

// useFertilizer empties the fertilizer containers accumulated overnight.
func (d *Daily) useFertilizer(ctx context.Context) error {
	var bag protocol.BagReply
	if err := d.call.Call(ctx, protocol.SvcItem, protocol.MethodBag,
		protocol.BagRequest{}, &bag); err != nil {
		return err
	}
	for _, it := range bag.Items {
		if it.ID != protocol.ContainerNormal && it.ID != protocol.ContainerOrganic {
			continue
		}
		if it.Count <= 0 {
			continue
		}
		if err := d.call.Call(ctx, protocol.SvcItem, protocol.MethodUse,
			protocol.UseItemRequest{ItemID: it.ID, Count: it.Count}, nil); err != nil {
			d.log.Printf("container %d: %v", it.ID, err)
		}
	}
	return nil
}
