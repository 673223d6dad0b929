package types

import (
	"go.ntppool.org/tablerank/entity"
	"go.ntppool.org/tablerank/scorer/score"
)

type Scorer interface {
	Score(e entity.Entity) score.Score
}
