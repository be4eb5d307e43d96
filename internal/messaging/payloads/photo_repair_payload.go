package payloads

// PhotoRepairPayload представляет задачу на повторную генерацию одного качества фото
// через RabbitMQ.
type PhotoRepairPayload struct {
	PhotoID string `json:"photo_id"`
	Quality string `json:"quality"`
}
