package protocol

// Service and method names are part of the fixed external wire schema.
const (
	SvcUser   = "gamepb.userpb.UserService"
	SvcPlant  = "gamepb.plantpb.PlantService"
	SvcShop   = "gamepb.shoppb.ShopService"
	SvcFriend = "gamepb.friendpb.FriendService"
	SvcVisit  = "gamepb.visitpb.VisitService"
	SvcItem   = "gamepb.itempb.ItemService"
	SvcTask   = "gamepb.taskpb.TaskService"
	SvcMall   = "gamepb.mallpb.MallService"
	SvcMail   = "gamepb.emailpb.EmailService"
	SvcAlbum  = "gamepb.illustratedpb.IllustratedService"
)

const (
	MethodLogin     = "Login"
	MethodHeartbeat = "Heartbeat"

	MethodAllLands    = "AllLands"
	MethodHarvest     = "Harvest"
	MethodWaterLand   = "WaterLand"
	MethodWeedOut     = "WeedOut"
	MethodInsecticide = "Insecticide"
	MethodFertilize   = "Fertilize"
	MethodRemovePlant = "RemovePlant"
	MethodPlant       = "Plant"
	MethodUnlockLand  = "UnlockLand"
	MethodUpgradeLand = "UpgradeLand"

	MethodShopInfo = "ShopInfo"
	MethodBuyGoods = "BuyGoods"

	MethodFriendsAll = "GetAll"
	MethodVisitEnter = "Enter"
	MethodVisitLeave = "Leave"

	MethodBag  = "Bag"
	MethodSell = "Sell"
	MethodUse  = "Use"

	MethodTaskInfo   = "TaskInfo"
	MethodClaimTasks = "BatchClaimTaskReward"

	MethodMallList = "GetMallListBySlotType"
	MethodPurchase = "Purchase"

	MethodMailList  = "GetEmailList"
	MethodClaimMail = "ClaimEmail"

	MethodMonthCardInfos = "GetMonthCardInfos"
	MethodClaimMonthCard = "ClaimMonthCardReward"

	MethodAlbumClaimAll = "ClaimAllRewardsV2"
)

// DeviceInfo is the static client metadata sent with login.
type DeviceInfo struct {
	ClientVersion string `cbor:"client_version"`
	SysSoftware   string `cbor:"sys_software"`
	Network       string `cbor:"network"`
	Memory        string `cbor:"memory"`
	DeviceID      string `cbor:"device_id"`
}

type LoginRequest struct {
	Code     string     `cbor:"code"`
	Platform string     `cbor:"platform"`
	OS       string     `cbor:"os"`
	SceneID  string     `cbor:"scene_id"`
	Device   DeviceInfo `cbor:"device_info"`
}

// BasicInfo is the server's snapshot of an account: the only authority on
// id, name, level, gold and experience.
type BasicInfo struct {
	GID   uint64 `cbor:"gid"`
	Name  string `cbor:"name"`
	Level int32  `cbor:"level"`
	Gold  int64  `cbor:"gold"`
	Exp   int64  `cbor:"exp"`
}

type LoginReply struct {
	Basic         *BasicInfo `cbor:"basic"`
	TimeNowMillis int64      `cbor:"time_now_millis"`
}

type HeartbeatRequest struct {
	GID           uint64 `cbor:"gid"`
	ClientVersion string `cbor:"client_version"`
}

type HeartbeatReply struct {
	ServerTime int64 `cbor:"server_time"`
}

// PlantPhase is one growth stage entry. BeginTime gates when the stage
// becomes current; the maintenance due-times are absolute and optional.
type PlantPhase struct {
	Phase      int32 `cbor:"phase"`
	BeginTime  int64 `cbor:"begin_time"`
	DryTime    int64 `cbor:"dry_time,omitempty"`
	WeedsTime  int64 `cbor:"weeds_time,omitempty"`
	InsectTime int64 `cbor:"insect_time,omitempty"`
}

type Plant struct {
	ID           int64        `cbor:"id"`
	Name         string       `cbor:"name,omitempty"`
	Phases       []PlantPhase `cbor:"phases"`
	DryNum       int32        `cbor:"dry_num,omitempty"`
	WeedOwners   []uint64     `cbor:"weed_owners,omitempty"`
	InsectOwners []uint64     `cbor:"insect_owners,omitempty"`
	Stealable    bool         `cbor:"stealable,omitempty"`
}

type Land struct {
	ID           int64  `cbor:"id"`
	Unlocked     bool   `cbor:"unlocked"`
	Level        int32  `cbor:"level,omitempty"`
	CouldUnlock  bool   `cbor:"could_unlock,omitempty"`
	CouldUpgrade bool   `cbor:"could_upgrade,omitempty"`
	Plant        *Plant `cbor:"plant,omitempty"`
}

// OperationLimit reports server-side daily caps for one operation class.
type OperationLimit struct {
	ID            int64 `cbor:"id"`
	DayTimes      int32 `cbor:"day_times"`
	DayTimesLimit int32 `cbor:"day_times_lt"`
}

type AllLandsRequest struct{}

type AllLandsReply struct {
	Lands           []Land           `cbor:"lands"`
	OperationLimits []OperationLimit `cbor:"operation_limits,omitempty"`
}

// HarvestRequest doubles as the steal request when HostGID names a peer.
type HarvestRequest struct {
	LandIDs []int64 `cbor:"land_ids"`
	HostGID uint64  `cbor:"host_gid"`
	All     bool    `cbor:"is_all,omitempty"`
}

type HarvestReply struct {
	Items []Item `cbor:"items,omitempty"`
}

type TendRequest struct {
	LandIDs []int64 `cbor:"land_ids"`
	HostGID uint64  `cbor:"host_gid"`
}

type TendReply struct{}

type FertilizeRequest struct {
	LandIDs      []int64 `cbor:"land_ids"`
	FertilizerID int64   `cbor:"fertilizer_id"`
}

type FertilizeReply struct{}

type RemovePlantRequest struct {
	LandIDs []int64 `cbor:"land_ids"`
}

type RemovePlantReply struct{}

type PlantRequest struct {
	SeedID  int64   `cbor:"seed_id"`
	LandIDs []int64 `cbor:"land_ids"`
}

type PlantReply struct{}

type UnlockLandRequest struct {
	LandID int64 `cbor:"land_id"`
	Shared bool  `cbor:"do_shared,omitempty"`
}

type UnlockLandReply struct {
	Land *Land `cbor:"land,omitempty"`
}

type UpgradeLandRequest struct {
	LandID int64 `cbor:"land_id"`
}

type UpgradeLandReply struct {
	Land *Land `cbor:"land,omitempty"`
}

// Goods unlock condition types.
const (
	CondLevel int32 = 1
)

type GoodsCond struct {
	Type  int32 `cbor:"type"`
	Param int64 `cbor:"param"`
}

type Goods struct {
	ID         int64       `cbor:"id"`
	ItemID     int64       `cbor:"item_id"`
	Price      int64       `cbor:"price"`
	Unlocked   bool        `cbor:"unlocked"`
	LimitCount int32       `cbor:"limit_count,omitempty"`
	BoughtNum  int32       `cbor:"bought_num,omitempty"`
	Conds      []GoodsCond `cbor:"conds,omitempty"`
}

type ShopInfoRequest struct {
	ShopID int64 `cbor:"shop_id"`
}

type ShopInfoReply struct {
	Goods []Goods `cbor:"goods_list"`
}

type BuyGoodsRequest struct {
	GoodsID int64 `cbor:"goods_id"`
	Num     int64 `cbor:"num"`
	Price   int64 `cbor:"price"`
}

type Item struct {
	ID    int64 `cbor:"id"`
	Count int64 `cbor:"count"`
}

type BuyGoodsReply struct {
	GetItems  []Item `cbor:"get_items,omitempty"`
	CostItems []Item `cbor:"cost_items,omitempty"`
}

// PeerPlantSummary carries the cheap per-peer counters used by the
// prefilter; it is the only peer data available without a full visit.
type PeerPlantSummary struct {
	StealNum  int32 `cbor:"steal_plant_num,omitempty"`
	DryNum    int32 `cbor:"dry_num,omitempty"`
	WeedNum   int32 `cbor:"weed_num,omitempty"`
	InsectNum int32 `cbor:"insect_num,omitempty"`
}

type PeerSummary struct {
	GID    uint64            `cbor:"gid"`
	Name   string            `cbor:"name,omitempty"`
	Remark string            `cbor:"remark,omitempty"`
	Level  int32             `cbor:"level,omitempty"`
	Plant  *PeerPlantSummary `cbor:"plant,omitempty"`
}

type PeersRequest struct{}

type PeersReply struct {
	Peers []PeerSummary `cbor:"game_friends"`
}

type VisitEnterRequest struct {
	HostGID uint64 `cbor:"host_gid"`
	Reason  int32  `cbor:"reason"`
}

type VisitEnterReply struct {
	Lands []Land `cbor:"lands"`
}

type VisitLeaveRequest struct {
	HostGID uint64 `cbor:"host_gid"`
}

type VisitLeaveReply struct{}

type BagRequest struct{}

type BagReply struct {
	Items []Item `cbor:"items"`
}

type SellRequest struct {
	ItemID int64 `cbor:"item_id"`
	Count  int64 `cbor:"count"`
}

type SellReply struct {
	Gold int64 `cbor:"gold"`
}

type UseItemRequest struct {
	ItemID int64 `cbor:"item_id"`
	Count  int64 `cbor:"count"`
}

type UseItemReply struct{}

// Task statuses as reported by TaskInfo.
const (
	TaskInProgress int32 = 1
	TaskClaimable  int32 = 2
	TaskClaimed    int32 = 3
)

type Task struct {
	ID     int64 `cbor:"id"`
	Status int32 `cbor:"status"`
}

type TaskInfoRequest struct{}

type TaskInfoReply struct {
	Tasks []Task `cbor:"tasks"`
}

type ClaimTasksRequest struct {
	TaskIDs []int64 `cbor:"task_ids"`
}

type ClaimTasksReply struct {
	Items []Item `cbor:"items,omitempty"`
}

type MallGoods struct {
	GoodsID int64 `cbor:"goods_id"`
	IsFree  bool  `cbor:"is_free,omitempty"`
}

type MallListRequest struct {
	SlotType int32 `cbor:"slot_type"`
}

type MallListReply struct {
	Goods []MallGoods `cbor:"goods_list"`
}

type PurchaseRequest struct {
	GoodsID int64 `cbor:"goods_id"`
	Count   int64 `cbor:"count"`
}

type PurchaseReply struct {
	Items []Item `cbor:"items,omitempty"`
}

type Mail struct {
	ID        int64 `cbor:"id"`
	HasReward bool  `cbor:"has_reward,omitempty"`
	Claimed   bool  `cbor:"claimed,omitempty"`
}

type MailListRequest struct {
	BoxType int32 `cbor:"box_type"`
}

type MailListReply struct {
	Mails []Mail `cbor:"emails"`
}

type ClaimMailRequest struct {
	BoxType int32 `cbor:"box_type"`
	MailID  int64 `cbor:"email_id"`
}

type ClaimMailReply struct {
	Items []Item `cbor:"items,omitempty"`
}

type MonthCardInfo struct {
	GoodsID  int64 `cbor:"goods_id"`
	CanClaim bool  `cbor:"can_claim,omitempty"`
}

type MonthCardInfosRequest struct{}

type MonthCardInfosReply struct {
	Infos []MonthCardInfo `cbor:"infos"`
}

type ClaimMonthCardRequest struct {
	GoodsID int64 `cbor:"goods_id"`
}

type ClaimMonthCardReply struct {
	Items []Item `cbor:"items,omitempty"`
}

type AlbumClaimAllRequest struct {
	OnlyClaimable bool `cbor:"only_claimable"`
}

type AlbumClaimAllReply struct {
	Items      []Item `cbor:"items,omitempty"`
	BonusItems []Item `cbor:"bonus_items,omitempty"`
}
