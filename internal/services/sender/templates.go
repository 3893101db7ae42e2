package sender

import "html/template"

var adminTemplate = template.Must(template.New("admin").Parse(`<html>
	<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
		<div style="max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #ddd; border-radius: 8px;">
			<h2 style="color: #2563eb; border-bottom: 2px solid #2563eb; padding-bottom: 10px;">{{.Subject}}</h2>
			<p style="font-size: 16px;">{{.Message}}</p>
			{{if .Data}}<div style="background: #f5f5f5; padding: 15px; border-radius: 5px; margin-top: 20px;">
				<h3 style="margin-top: 0;">Детали:</h3>
				<pre style="white-space: pre-wrap; word-wrap: break-word;">{{.Data}}</pre>
			</div>{{end}}
			<hr style="margin: 20px 0; border: none; border-top: 1px solid #ddd;">
			<p style="font-size: 12px; color: #666;">
				Это автоматическое уведомление с сайта банкротства<br>
				Тип события: {{.Type}}
			</p>
		</div>
	</body>
</html>`))

var resetTemplate = template.Must(template.New("reset").Parse(`<html>
	<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
		<h2>Восстановление пароля</h2>
		<p>Здравствуйте, {{.Name}}!</p>
		<p>Вы запросили восстановление пароля для вашего аккаунта.</p>
		<p>Перейдите по ссылке ниже, чтобы создать новый пароль:</p>
		<p><a href="{{.URL}}" style="background: #4F46E5; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Восстановить пароль</a></p>
		<p>Ссылка действительна в течение {{.TTL}}.</p>
		<p>Если вы не запрашивали восстановление пароля, просто проигнорируйте это письмо.</p>
		<p>С уважением,<br>Команда платформы обучения</p>
	</body>
</html>`))

var credentialsTemplate = template.Must(template.New("credentials").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 26px;">Добро пожаловать на курс!</h1>
	<p style="font-size: 16px;">Здравствуйте, <strong>{{.Name}}</strong>!</p>
	<p style="font-size: 16px;">Ваш доступ к курсу <strong>"Банкротство физических лиц - самостоятельно"</strong> активирован.</p>
	<div style="background: #f8f9fa; padding: 20px; border-radius: 8px; margin: 25px 0;">
		<h2 style="margin-top: 0; color: #667eea; font-size: 20px;">Ваши данные для входа:</h2>
		<p style="margin: 15px 0;"><strong>Сайт:</strong> <a href="{{.LoginURL}}">{{.LoginURL}}</a></p>
		<p style="margin: 15px 0;"><strong>Email:</strong> <span style="font-family: monospace;">{{.Email}}</span></p>
		<p style="margin: 15px 0;"><strong>Пароль:</strong> <span style="font-family: monospace; font-weight: bold;">{{.Password}}</span></p>
	</div>
	<p style="font-size: 14px; color: #666;">Рекомендуем сменить пароль после первого входа.</p>
	<p style="text-align: center; margin-top: 30px;">
		<a href="{{.LoginURL}}" style="display: inline-block; background: #667eea; color: white; padding: 15px 40px; text-decoration: none; border-radius: 5px; font-weight: bold;">Начать обучение</a>
	</p>
</body>
</html>`))
