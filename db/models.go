package db

type Room struct {
	Id               string
	Title            string
	Description      string
	Price            float64
	Deposit          float64
	Area             float64
	Length           float64
	Width            float64
	MaxPeople        int
	ElectricityPrice float64
	WaterPrice       float64
	InternetPrice    float64
	FullAddress      string
	Amenities        []string
	ImageUrls        []string
	Approval         int
	PostStartDate    *int64
	PostEndDate      *int64
	CreatedAt        int64
	UpdatedAt        int64
}

type ApprovalUpdate struct {
	RoomId        string
	Approval      int
	PostStartDate *int64
	PostEndDate   *int64
}
