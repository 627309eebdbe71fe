package irgmodels

import "time"

// Reading is one row of the dados_irrigacao table: a sensor observation and
// the relay (irrigation actuator) outcome recorded with it.
type Reading struct {
	ID            int64     `json:"id_coleta" db:"id_coleta" gorm:"column:id_coleta;primaryKey;autoIncrement"`
	SensorName    string    `json:"sensor" db:"sensor" gorm:"column:sensor;size:100;not null;index:idx_dados_irrigacao_sensor"`
	Value         float64   `json:"valor_coleta" db:"valor_coleta" gorm:"column:valor_coleta;not null"`
	CollectedAt   time.Time `json:"data_hora_coleta" db:"data_hora_coleta" gorm:"column:data_hora_coleta;not null;index:idx_dados_irrigacao_coleta"`
	RelayStatus   *int      `json:"status_rele" db:"status_rele" gorm:"column:status_rele"`
	TriggerReason string    `json:"motivo_acionamento,omitempty" db:"motivo_acionamento" gorm:"column:motivo_acionamento;size:255"`
}

// TableName keeps the historical table name
func (Reading) TableName() string {
	return "dados_irrigacao"
}

// RelayOn / RelayOff are the two relay states
const (
	RelayOff = 0
	RelayOn  = 1
)

// IntPtr is a small helper for optional relay statuses
func IntPtr(v int) *int {
	return &v
}
