package notify

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Brand.Name}} - {{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; color: #333; }
.header { background: #059669; color: #fff; padding: 20px; border-radius: 8px; text-align: center; }
.box { border: 2px solid #10b981; border-radius: 8px; padding: 20px; margin: 20px 0; }
.label { font-weight: bold; color: #374151; }
.value { color: #6b7280; margin-bottom: 10px; }
.total { font-weight: bold; font-size: 18px; color: #10b981; border-top: 2px solid #e5e7eb; padding-top: 10px; }
.note { background: #fef3c7; border: 1px solid #f59e0b; border-radius: 6px; padding: 15px; margin: 20px 0; }
.footer { text-align: center; margin-top: 30px; color: #6b7280; font-size: 12px; }
</style>
</head>
<body>
<div class="header"><div style="font-size:24px;font-weight:bold">{{.Brand.Name}}</div><div>{{.Brand.Tagline}}</div></div>
{{template "content" .}}
<div class="footer">
<strong>Contact {{.Brand.Name}}</strong><br>
Email: {{.Brand.SupportEmail}} | Phone: {{.Brand.SupportPhone}}<br>
This is an automated message. Please keep it for your records.
</div>
</body>
</html>{{end}}`

const receiptHTML = `{{define "content"}}<div class="box">
<div style="text-align:center">
<div style="color:#10b981;font-size:20px;font-weight:bold">DELIVERY RECEIPT</div>
<div>Order ID: <strong>{{.Order.ID}}</strong></div>
<div style="color:#059669;font-weight:bold">{{.Headline}}</div>
</div>
<div class="label">Customer Name</div><div class="value">{{.Order.CustomerName}}</div>
<div class="label">Email</div><div class="value">{{.Order.CustomerEmail}}</div>
<div class="label">Phone</div><div class="value">{{.Order.CustomerPhone}}</div>
<div class="label">Order Date</div><div class="value">{{localTime .Order.CreatedAt}}</div>
<div class="label">Pickup Location</div><div class="value">{{.Order.Pickup}}</div>
<div class="label">Delivery Location</div><div class="value">{{.Order.Delivery}}</div>
<div class="label">Package</div><div class="value">{{.Order.PackageDetails}}</div>
{{if .Order.Notes}}<div class="label">Notes</div><div class="value">{{.Order.Notes}}</div>{{end}}
<div class="label">Distance</div><div class="value">{{km .Order.Distance}} km</div>
<div class="label">Status</div><div class="value">{{statusLabel .Order.Status}}</div>
{{if .Order.RiderName}}<div class="note"><strong>Assigned Rider</strong><br>Name: {{.Order.RiderName}}<br>Phone: {{.Order.RiderPhone}}</div>{{end}}
<div>Distance ({{km .Order.Distance}} km): {{money .Brand.Currency .DistanceCharge}}</div>
<div>Base rate: {{money .Brand.Currency .Brand.PricePerKm}} per km</div>
{{if .Order.PaymentMethod}}<div>Payment: {{.Order.PaymentMethod}} ({{.Order.PaymentStatus}})</div>{{end}}
<div class="total">Total Amount: {{money .Brand.Currency .Order.Cost}}</div>
</div>{{end}}`

const receiptText = `Dear {{.Order.CustomerName}},

{{.Headline}}

Order ID: {{.Order.ID}}
Pickup: {{.Order.Pickup}}
Delivery: {{.Order.Delivery}}
Distance: {{km .Order.Distance}} km
Total Cost: {{money .Brand.Currency .Order.Cost}}
{{if .Order.RiderName}}Assigned Rider: {{.Order.RiderName}} ({{.Order.RiderPhone}})
{{end}}
Thank you for choosing {{.Brand.Name}}!

{{.Brand.Name}} Team
Email: {{.Brand.SupportEmail}}
Phone: {{.Brand.SupportPhone}}
`

const adminNoticeHTML = `{{define "content"}}<div class="box">
<h3>Order Confirmation Notification</h3>
<p>Order <strong>{{.Order.ID}}</strong> has been confirmed and a receipt was sent to the customer.</p>
<ul>
<li><strong>Customer:</strong> {{.Order.CustomerName}} ({{.Order.CustomerEmail}})</li>
<li><strong>Route:</strong> {{.Order.Pickup}} &rarr; {{.Order.Delivery}}</li>
<li><strong>Cost:</strong> {{money .Brand.Currency .Order.Cost}}</li>
<li><strong>Rider:</strong> {{if .Order.RiderName}}{{.Order.RiderName}}{{else}}Not assigned yet{{end}}</li>
</ul>
</div>{{end}}`

const adminNoticeText = `Order {{.Order.ID}} confirmed. Receipt sent to {{.Order.CustomerEmail}}.
Route: {{.Order.Pickup}} -> {{.Order.Delivery}}
Cost: {{money .Brand.Currency .Order.Cost}}
Rider: {{if .Order.RiderName}}{{.Order.RiderName}}{{else}}Not assigned yet{{end}}
`

const earningsHTML = `{{define "content"}}<div class="box">
<div style="text-align:center">
<div style="color:#10b981;font-size:20px;font-weight:bold">EARNINGS STATEMENT</div>
<div>Order ID: <strong>{{.Earning.OrderID}}</strong></div>
</div>
<div class="label">Rider</div><div class="value">{{.Rider.FullName}} ({{.Rider.ID}})</div>
<div class="label">Phone</div><div class="value">{{.Rider.Phone}}</div>
<div class="label">Date</div><div class="value">{{localTime .At}}</div>
<div>Delivery fee: {{money .Brand.Currency .Earning.Gross}}</div>
<div>Company commission ({{percent .Earning.CommissionRate}}): -{{money .Brand.Currency .Earning.Commission}}</div>
<div class="total">Your earning: {{money .Brand.Currency .Earning.Net}}</div>
<div class="note"><strong>Balance</strong><br>
Previous balance: {{money .Brand.Currency .Earning.PreviousBalance}}<br>
New balance: {{money .Brand.Currency .Earning.NewBalance}}<br>
Total deliveries: {{.Rider.TotalDeliveries}}</div>
</div>{{end}}`

const earningsText = `Hello {{.Rider.FullName}},

You earned {{money .Brand.Currency .Earning.Net}} for delivering order {{.Earning.OrderID}}.
Delivery fee: {{money .Brand.Currency .Earning.Gross}}
Commission ({{percent .Earning.CommissionRate}}): {{money .Brand.Currency .Earning.Commission}}
Previous balance: {{money .Brand.Currency .Earning.PreviousBalance}}
New balance: {{money .Brand.Currency .Earning.NewBalance}}

{{.Brand.Name}} Team
`

const partnershipHTML = `{{define "content"}}<div class="box">
<h3>New Partnership Request {{.Request.ID}}</h3>
<ul>
<li><strong>Company:</strong> {{.Request.CompanyName}}</li>
<li><strong>Contact:</strong> {{.Request.ContactPerson}} ({{.Request.Email}}, {{.Request.Phone}})</li>
<li><strong>Category:</strong> {{.Request.BusinessCategory}}</li>
<li><strong>Monthly volume:</strong> {{.Request.MonthlyVolume}}</li>
</ul>
{{if .Request.Message}}<p>{{.Request.Message}}</p>{{end}}
</div>{{end}}`

const partnershipText = `New partnership request {{.Request.ID}} from {{.Request.CompanyName}}.
Contact: {{.Request.ContactPerson}} ({{.Request.Email}}, {{.Request.Phone}})
Category: {{.Request.BusinessCategory}}
Monthly volume: {{.Request.MonthlyVolume}}
{{.Request.Message}}
`
