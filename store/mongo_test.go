package store

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/aluiziolira/autotrader-watch/models"
)

func TestCriterionFilter(t *testing.T) {
	tests := []struct {
		name string
		crit models.Criterion
		want bson.D
	}{
		{
			name: "without mileage cap",
			crit: models.Criterion{MaxPrice: 10000, MaxProximityKm: 100, TitleContains: "Civic"},
			want: bson.D{
				{Key: "price", Value: bson.D{{Key: "$ne", Value: nil}, {Key: "$lte", Value: 10000.0}}},
				{Key: "proximity_km", Value: bson.D{{Key: "$ne", Value: nil}, {Key: "$lte", Value: 100}}},
				{Key: "title", Value: bson.D{{Key: "$regex", Value: "Civic"}, {Key: "$options", Value: "i"}}},
			},
		},
		{
			name: "mileage cap and regex metacharacters",
			crit: models.Criterion{MaxPrice: 5000, MaxMileage: ptr(150000), MaxProximityKm: 50, TitleContains: "Mazda 3 (GT)"},
			want: bson.D{
				{Key: "price", Value: bson.D{{Key: "$ne", Value: nil}, {Key: "$lte", Value: 5000.0}}},
				{Key: "proximity_km", Value: bson.D{{Key: "$ne", Value: nil}, {Key: "$lte", Value: 50}}},
				{Key: "title", Value: bson.D{{Key: "$regex", Value: `Mazda 3 \(GT\)`}, {Key: "$options", Value: "i"}}},
				{Key: "$or", Value: bson.A{
					bson.D{{Key: "mileage", Value: nil}},
					bson.D{{Key: "mileage", Value: bson.D{{Key: "$lte", Value: 150000}}}},
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := criterionFilter(tt.crit)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("criterionFilter() =\n%v\nwant\n%v", got, tt.want)
			}
		})
	}
}
