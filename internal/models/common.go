// server/internal/models/common.go
package models

// Coordinates là vị trí địa lý của một cơ sở.
type Coordinates struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// Location là một object có cấu trúc để lưu thông tin địa chỉ.
type Location struct {
	Address     string      `bson:"address" json:"address"`
	City        string      `bson:"city" json:"city"`
	State       string      `bson:"state" json:"state"`
	Pincode     string      `bson:"pincode" json:"pincode"`
	Coordinates Coordinates `bson:"coordinates" json:"coordinates"`
}

// Ratings is a running average over all scores submitted for a facility.
type Ratings struct {
	Average float64 `bson:"average" json:"average"`
	Count   int64   `bson:"count" json:"count"`
}

// MediaPointer đại diện cho một tài liệu media được lưu trữ trên S3.
type MediaPointer struct {
	Type     string `bson:"type" json:"type"`
	URL      string `bson:"url" json:"url"`
	Verified bool   `bson:"verified" json:"verified"`
}
