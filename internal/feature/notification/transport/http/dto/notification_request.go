package dto

// BroadcastReq targets one user, one room of the caller's tenant, or every
// connection when both are empty.
type BroadcastReq struct {
	Event  string `json:"event" binding:"required,max=100"`
	Data   any    `json:"data"`
	Room   string `json:"room" binding:"omitempty,max=100"`
	UserID *uint  `json:"userId" binding:"omitempty,gt=0"`
}

type BroadcastRes struct {
	Delivered int `json:"delivered"`
}

type ConnectedRes struct {
	Users       []uint `json:"users"`
	Count       int    `json:"count"`
	Connections int    `json:"connections"`
}
