package network

import (
	"context"
	"strconv"
	"time"

	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/models"
)

// 各网络 ParseWebhook 产出的规范化 data 键
const (
	DataKeyConversionID  = "network_conversion_id"
	DataKeyOrderID       = "order_id"
	DataKeyMerchantID    = "merchant_id"
	DataKeyClickID       = "click_id"
	DataKeyOrderValue    = "order_value"
	DataKeyCurrency      = "currency"
	DataKeyCommission    = "commission_amount"
	DataKeyStatus        = "status"
	DataKeyProductID     = "network_product_id"
)

// ApplyWebhookEvent 将规范化回调事件转为存储写入。
// 转化事件按状态机做 upsert，商品事件只刷新更新时间戳。
func ApplyWebhookEvent(ctx context.Context, sink EventSink, payload *models.WebhookPayload) error {
	if sink == nil || payload == nil {
		return NewError("", constants.ErrCodeMalformedPayload, "webhook payload missing", false, nil)
	}

	switch payload.EventType {
	case constants.WebhookEventConversionCreated,
		constants.WebhookEventConversionUpdated,
		constants.WebhookEventConversionCancelled:
		conversion, err := conversionFromPayload(payload)
		if err != nil {
			return err
		}
		return sink.UpsertConversion(ctx, conversion)

	case constants.WebhookEventProductUpdated:
		productID := DataString(payload.Data, DataKeyProductID)
		if productID == "" {
			return NewError(payload.NetworkType, constants.ErrCodeMalformedPayload,
				"product webhook missing product id", false, nil)
		}
		at := payload.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		return sink.TouchProduct(ctx, payload.TenantID, payload.NetworkType, productID, at)
	}

	return NewError(payload.NetworkType, constants.ErrCodeMalformedPayload,
		"unsupported webhook event "+payload.EventType, false, nil)
}

func conversionFromPayload(payload *models.WebhookPayload) (*models.Conversion, error) {
	conversionID := DataString(payload.Data, DataKeyConversionID)
	if conversionID == "" {
		return nil, NewError(payload.NetworkType, constants.ErrCodeMalformedPayload,
			"conversion webhook missing conversion id", false, nil)
	}

	status := DataString(payload.Data, DataKeyStatus)
	if payload.EventType == constants.WebhookEventConversionCancelled {
		status = constants.ConversionStatusCancelled
	}
	if !models.IsCanonicalConversionStatus(status) {
		status = constants.ConversionStatusPending
	}

	currency := DataString(payload.Data, DataKeyCurrency)
	if currency == "" {
		currency = "USD"
	}
	conversionDate := payload.Timestamp
	if conversionDate.IsZero() {
		conversionDate = time.Now()
	}

	return &models.Conversion{
		TenantID:            payload.TenantID,
		NetworkType:         payload.NetworkType,
		NetworkConversionID: conversionID,
		ClickID:             DataString(payload.Data, DataKeyClickID),
		OrderID:             DataString(payload.Data, DataKeyOrderID),
		MerchantID:          DataString(payload.Data, DataKeyMerchantID),
		OrderValue:          DataMoney(payload.Data, DataKeyOrderValue),
		Currency:            currency,
		CommissionAmount:    DataMoney(payload.Data, DataKeyCommission),
		Status:              status,
		ConversionDate:      conversionDate,
		Metadata:            payload.Data,
	}, nil
}

// DataString 从回调 data 读取字符串字段
func DataString(data models.JSON, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

// DataMoney 从回调 data 读取金额字段，字符串与数字都接受
func DataMoney(data models.JSON, key string) models.Money {
	if data == nil {
		return models.Money{}
	}
	switch v := data[key].(type) {
	case string:
		return models.NewMoneyFromString(v)
	case float64:
		return models.NewMoneyFromString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return models.Money{}
}
