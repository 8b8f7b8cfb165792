package state

var (
	marketPrefix       = []byte("lending/market/")
	positionPrefix     = []byte("lending/position/")
	auctionPrefix      = []byte("auction/record/")
	auctionIndexPrefix = []byte("auction/index/")
	auctionSeqKey      = []byte("auction/seq")
)
