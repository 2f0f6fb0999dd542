package vehicle

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/weather"
)

// physicalAttr 车辆类型的物理属性
type physicalAttr struct {
	length      float64 // 车长（米）
	width       float64 // 车宽（米）
	maxV        float64 // 自由流最大速度（米/秒）
	maxA        float64 // 最大加速度（米/秒²）
	maxBrakingA float64 // 紧急制动加速度绝对值（米/秒²）
	minGap      float64 // 安全间距下限（米）
}

var physicalAttrs = map[entity.VehicleType]physicalAttr{
	entity.VehicleTypeCar:          {length: 4.0, width: 1.8, maxV: 120 / 3.6, maxA: 3.0, maxBrakingA: 8.0, minGap: 1.5},
	entity.VehicleTypeMotorcycle:   {length: 2.0, width: 0.8, maxV: 100 / 3.6, maxA: 4.0, maxBrakingA: 6.0, minGap: 0.8},
	entity.VehicleTypeAutoRickshaw: {length: 2.8, width: 1.4, maxV: 60 / 3.6, maxA: 2.0, maxBrakingA: 5.0, minGap: 1.0},
	entity.VehicleTypeBus:          {length: 12.0, width: 2.5, maxV: 80 / 3.6, maxA: 1.5, maxBrakingA: 6.0, minGap: 2.0},
	entity.VehicleTypeTruck:        {length: 15.0, width: 2.5, maxV: 70 / 3.6, maxA: 1.0, maxBrakingA: 5.0, minGap: 2.5},
	entity.VehicleTypeBicycle:      {length: 1.8, width: 0.6, maxV: 25 / 3.6, maxA: 2.0, maxBrakingA: 3.0, minGap: 0.5},
}

// laneDisciplines 车道纪律性，0~1，越低越容易见缝插针、容忍更小的间距
var laneDisciplines = map[entity.VehicleType]float64{
	entity.VehicleTypeCar:          0.7,
	entity.VehicleTypeBus:          0.5,
	entity.VehicleTypeAutoRickshaw: 0.3,
	entity.VehicleTypeMotorcycle:   0.2,
	entity.VehicleTypeTruck:        0.8,
	entity.VehicleTypeBicycle:      0.1,
}

// overtakeAggrs 超车意愿，0~1
var overtakeAggrs = map[entity.VehicleType]float64{
	entity.VehicleTypeMotorcycle:   0.9,
	entity.VehicleTypeAutoRickshaw: 0.8,
	entity.VehicleTypeCar:          0.6,
	entity.VehicleTypeBus:          0.4,
	entity.VehicleTypeTruck:        0.3,
	entity.VehicleTypeBicycle:      0.2,
}

// followGapFactors 跟车间距倍率，重车需要更长的车头时距
var followGapFactors = map[entity.VehicleType]float64{
	entity.VehicleTypeTruck:        2.5,
	entity.VehicleTypeBus:          2.0,
	entity.VehicleTypeCar:          1.5,
	entity.VehicleTypeAutoRickshaw: 1.0,
	entity.VehicleTypeMotorcycle:   0.8,
	entity.VehicleTypeBicycle:      0.5,
}

const (
	baseHeadway   = 1.2  // 基础车头时距（秒）
	baseWeaveProb = 0.05 // 每秒机会性横向挪移的基础概率
)

// Params 单步生效的行为参数集
// 说明：由Resolve对同一输入解析得到的结果完全一致，不携带任何历史状态
type Params struct {
	Length float64 // 车长（米）
	Width  float64 // 车宽（米）

	MaxA          float64 // 最大加速度（米/秒²），>0，已含路面附着折减
	UsualBrakingA float64 // 常规制动加速度（米/秒²），<0
	MaxBrakingA   float64 // 紧急制动加速度（米/秒²），<0

	SpeedCap float64 // 速度上限（米/秒），综合车型、限速、天气、路面质量
	MinGap   float64 // 安全间距下限（米），跌破即无条件紧急制动
	Headway  float64 // 期望车头时距（秒）

	LaneDiscipline float64 // 车道纪律性，0~1
	OvertakeAggr   float64 // 超车意愿，0~1
	WeaveProb      float64 // 每秒机会性横向挪移的概率
}

// Resolve 解析车辆行为参数
// 功能：根据车辆类型、个体随机种子、天气条件与路面状况计算本步生效的行为参数
// 参数：typ-车辆类型，emergency-是否为特权急救车，seed-个体种子（0~1，生成后不变），
// cond-天气条件，quality-路面有效质量，segmentMaxV-路段限速，qualityThreshold-质量阈值
// 返回：行为参数集
// 算法说明：
// 1. 速度上限取车型极速与路段限速的较小者，乘以天气速度系数；
//    路面质量低于阈值时按quality/threshold等比例压低
// 2. 车头时距按车型倍率与天气间距系数放大，个体种子在±25%内摆动
// 3. 加减速能力按路面附着力折减
// 4. 急救车辆放宽速度上限并提高超车意愿，但不改变物理尺寸
func Resolve(
	typ entity.VehicleType, emergency bool, seed float64,
	cond weather.Condition,
	quality, segmentMaxV, qualityThreshold float64,
) Params {
	attr := physicalAttrs[typ]
	traction := cond.Traction()

	capV := attr.maxV
	if segmentMaxV > 0 && segmentMaxV < capV {
		capV = segmentMaxV
	}
	capV *= cond.SpeedFactor()
	if qualityThreshold > 0 && quality < qualityThreshold {
		capV *= quality / qualityThreshold
	}
	// 个体差异：±5%
	capV *= 0.95 + 0.1*seed
	if emergency {
		capV *= 1.15
	}
	capV = math.Max(capV, 0.5)

	headway := baseHeadway * followGapFactors[typ] * cond.GapFactor() * (1.25 - 0.5*seed)
	aggr := overtakeAggrs[typ]
	discipline := laneDisciplines[typ]
	if emergency {
		headway *= 0.8
		aggr = math.Max(aggr, 0.9)
	}

	maxBrakingA := -attr.maxBrakingA * traction
	return Params{
		Length:         attr.length,
		Width:          attr.width,
		MaxA:           attr.maxA * traction,
		UsualBrakingA:  0.6 * maxBrakingA,
		MaxBrakingA:    maxBrakingA,
		SpeedCap:       capV,
		MinGap:         attr.minGap,
		Headway:        headway,
		LaneDiscipline: discipline,
		OvertakeAggr:   lo.Clamp(aggr, 0, 1),
		WeaveProb:      baseWeaveProb * aggr * (1 - discipline),
	}
}

// DefaultAttr 获取车辆类型的静态物理属性（车长、车宽）
func DefaultAttr(typ entity.VehicleType) (length, width float64) {
	attr := physicalAttrs[typ]
	return attr.length, attr.width
}
