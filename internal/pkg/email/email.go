package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/qs3c/vpn_go_server/config"
)

type Service struct {
	cfg *config.EmailConfig
}

func NewService(cfg *config.EmailConfig) *Service {
	return &Service{cfg: cfg}
}

// SendPaymentReceipt 发送支付成功回执
func (s *Service) SendPaymentReceipt(to string, amount float64, currency, purpose string) error {
	subject := "支付成功 - VPN 服务"
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">支付成功</h2>
        <p>您好，</p>
        <p>我们已收到您的付款：</p>
        <div style="background-color: #f3f4f6; padding: 15px; text-align: center; font-size: 24px; font-weight: bold; margin: 20px 0;">
            %.2f %s
        </div>
        <p>订单类型：%s</p>
        <p>相应权益已即时生效，可在个人中心查看。</p>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">此邮件由系统自动发送，请勿回复。</p>
    </div>
</body>
</html>
`, amount, currency, purposeLabel(purpose))

	return s.sendHTML(to, subject, body)
}

// SendSubscriptionExpiring 发送订阅到期提醒
func (s *Service) SendSubscriptionExpiring(to, until string) error {
	subject := "订阅即将到期 - VPN 服务"
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">订阅即将到期</h2>
        <p>您好，</p>
        <p>您的订阅将于 <strong>%s</strong> 到期。</p>
        <p>到期后设备将被停用，续费可无缝延长现有权益。</p>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">此邮件由系统自动发送，请勿回复。</p>
    </div>
</body>
</html>
`, until)

	return s.sendHTML(to, subject, body)
}

func purposeLabel(purpose string) string {
	switch purpose {
	case "SUBSCRIPTION":
		return "订阅套餐"
	case "ADDON":
		return "附加设备槽位"
	case "TOPUP":
		return "余额充值"
	default:
		return purpose
	}
}

// sendHTML 发送 HTML 邮件
func (s *Service) sendHTML(to, subject, body string) error {
	headers := make(map[string]string)
	headers["From"] = s.cfg.From
	headers["To"] = to
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"

	var msg strings.Builder
	for k, v := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg.String()))
}
