package vehicle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/mixed-traffic-sim/entity/weather"
)

var clearWeather = weather.Condition{State: weather.StateClear, Intensity: 0}

func TestResolveIdempotent(t *testing.T) {
	// 同一输入必然得到同一结果，解析器不携带任何状态
	for _, typ := range []entity.VehicleType{
		entity.VehicleTypeCar, entity.VehicleTypeBus, entity.VehicleTypeMotorcycle,
	} {
		a := vehicle.Resolve(typ, false, 0.42, clearWeather, 0.9, 16.7, 0.6)
		b := vehicle.Resolve(typ, false, 0.42, clearWeather, 0.9, 16.7, 0.6)
		assert.Equal(t, a, b)
	}
}

func TestResolveTypeOrdering(t *testing.T) {
	car := vehicle.Resolve(entity.VehicleTypeCar, false, 0.5, clearWeather, 1, 30, 0.6)
	truck := vehicle.Resolve(entity.VehicleTypeTruck, false, 0.5, clearWeather, 1, 30, 0.6)
	moto := vehicle.Resolve(entity.VehicleTypeMotorcycle, false, 0.5, clearWeather, 1, 30, 0.6)

	// 重车跟车间距更长，加速更弱
	assert.Greater(t, truck.Headway, car.Headway)
	assert.Greater(t, car.Headway, moto.Headway)
	assert.Greater(t, car.MaxA, truck.MaxA)
	// 摩托车纪律性最低、超车意愿最高
	assert.Less(t, moto.LaneDiscipline, car.LaneDiscipline)
	assert.Greater(t, moto.OvertakeAggr, car.OvertakeAggr)
	// 物理尺寸
	assert.Greater(t, truck.Length, car.Length)
	assert.Less(t, moto.Width, car.Width)
}

func TestResolveHeavyRain(t *testing.T) {
	clear := vehicle.Resolve(entity.VehicleTypeCar, false, 0.5, clearWeather, 1, 16.7, 0.6)
	rain := vehicle.Resolve(entity.VehicleTypeCar, false, 0.5,
		weather.Condition{State: weather.StateHeavyRain, Intensity: 0.8}, 1, 16.7, 0.6)

	// 大雨压低速度上限、拉长车头时距、削弱加减速能力
	assert.Less(t, rain.SpeedCap, clear.SpeedCap)
	assert.Greater(t, rain.Headway, clear.Headway)
	assert.Less(t, rain.MaxA, clear.MaxA)
	assert.Greater(t, rain.MaxBrakingA, clear.MaxBrakingA) // 均为负值，雨天制动更弱
}

func TestResolveQualityBelowThreshold(t *testing.T) {
	good := vehicle.Resolve(entity.VehicleTypeCar, false, 0.5, clearWeather, 0.9, 16.7, 0.6)
	bad := vehicle.Resolve(entity.VehicleTypeCar, false, 0.5, clearWeather, 0.3, 16.7, 0.6)

	// 阈值之上质量不影响上限
	assert.InDelta(t, good.SpeedCap, 16.7*(0.95+0.1*0.5), 1e-9)
	// 阈值之下按quality/threshold等比例压低
	assert.InDelta(t, bad.SpeedCap, good.SpeedCap*0.3/0.6, 1e-9)
}

func TestResolveEmergency(t *testing.T) {
	normal := vehicle.Resolve(entity.VehicleTypeCar, false, 0.5, clearWeather, 1, 16.7, 0.6)
	em := vehicle.Resolve(entity.VehicleTypeCar, true, 0.5, clearWeather, 1, 16.7, 0.6)

	assert.Greater(t, em.SpeedCap, normal.SpeedCap)
	assert.Less(t, em.Headway, normal.Headway)
	assert.GreaterOrEqual(t, em.OvertakeAggr, 0.9)
	// 物理尺寸不变
	assert.Equal(t, normal.Length, em.Length)
}

func TestResolveBrakingSigns(t *testing.T) {
	p := vehicle.Resolve(entity.VehicleTypeBus, false, 0.1, clearWeather, 1, 20, 0.6)
	assert.Greater(t, p.MaxA, 0.0)
	assert.Less(t, p.UsualBrakingA, 0.0)
	assert.Less(t, p.MaxBrakingA, p.UsualBrakingA)
	assert.Greater(t, p.MinGap, 0.0)
}
