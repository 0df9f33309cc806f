package farm

import (
	"context"

	"farmfleet.dev/internal/protocol"
)

// Caller issues one correlated request. Satisfied by *session.Session.
type Caller interface {
	Call(ctx context.Context, service, method string, req, reply any) error
}

// Client is the typed surface over the plant and shop services. HostGID 0
// means the caller's own farm; a nonzero host targets a peer's farm during
// a visit.
type Client struct {
	c Caller
}

func NewClient(c Caller) *Client {
	return &Client{c: c}
}

func (cl *Client) AllLands(ctx context.Context) ([]protocol.Land, error) {
	var reply protocol.AllLandsReply
	err := cl.c.Call(ctx, protocol.SvcPlant, protocol.MethodAllLands, protocol.AllLandsRequest{}, &reply)
	return reply.Lands, err
}

func (cl *Client) Water(ctx context.Context, ids []int64, host uint64) error {
	return cl.tend(ctx, protocol.MethodWaterLand, ids, host)
}

func (cl *Client) WeedOut(ctx context.Context, ids []int64, host uint64) error {
	return cl.tend(ctx, protocol.MethodWeedOut, ids, host)
}

func (cl *Client) Insecticide(ctx context.Context, ids []int64, host uint64) error {
	return cl.tend(ctx, protocol.MethodInsecticide, ids, host)
}

func (cl *Client) tend(ctx context.Context, method string, ids []int64, host uint64) error {
	if len(ids) == 0 {
		return nil
	}
	return cl.c.Call(ctx, protocol.SvcPlant, method,
		protocol.TendRequest{LandIDs: ids, HostGID: host}, nil)
}

// Harvest reaps mature plots in one batch. On a peer's farm this is a steal
// and the server decides how much actually transfers.
func (cl *Client) Harvest(ctx context.Context, ids []int64, host uint64) ([]protocol.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var reply protocol.HarvestReply
	err := cl.c.Call(ctx, protocol.SvcPlant, protocol.MethodHarvest,
		protocol.HarvestRequest{LandIDs: ids, HostGID: host}, &reply)
	return reply.Items, err
}

func (cl *Client) RemovePlants(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return cl.c.Call(ctx, protocol.SvcPlant, protocol.MethodRemovePlant,
		protocol.RemovePlantRequest{LandIDs: ids}, nil)
}

func (cl *Client) PlantSeed(ctx context.Context, seedID int64, landID int64) error {
	return cl.c.Call(ctx, protocol.SvcPlant, protocol.MethodPlant,
		protocol.PlantRequest{SeedID: seedID, LandIDs: []int64{landID}}, nil)
}

func (cl *Client) Fertilize(ctx context.Context, ids []int64, fertilizerID int64) error {
	if len(ids) == 0 {
		return nil
	}
	return cl.c.Call(ctx, protocol.SvcPlant, protocol.MethodFertilize,
		protocol.FertilizeRequest{LandIDs: ids, FertilizerID: fertilizerID}, nil)
}

func (cl *Client) UnlockLand(ctx context.Context, id int64) error {
	return cl.c.Call(ctx, protocol.SvcPlant, protocol.MethodUnlockLand,
		protocol.UnlockLandRequest{LandID: id}, nil)
}

func (cl *Client) UpgradeLand(ctx context.Context, id int64) error {
	return cl.c.Call(ctx, protocol.SvcPlant, protocol.MethodUpgradeLand,
		protocol.UpgradeLandRequest{LandID: id}, nil)
}

func (cl *Client) ShopInfo(ctx context.Context, shopID int64) ([]protocol.Goods, error) {
	var reply protocol.ShopInfoReply
	err := cl.c.Call(ctx, protocol.SvcShop, protocol.MethodShopInfo,
		protocol.ShopInfoRequest{ShopID: shopID}, &reply)
	return reply.Goods, err
}

func (cl *Client) BuyGoods(ctx context.Context, goodsID, num, price int64) error {
	return cl.c.Call(ctx, protocol.SvcShop, protocol.MethodBuyGoods,
		protocol.BuyGoodsRequest{GoodsID: goodsID, Num: num, Price: price}, nil)
}
