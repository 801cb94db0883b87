package services

import "strings"

type categoryRule struct {
	name  string
	terms []string
}

// categoryRules are evaluated in order; the first rule with a matching term wins.
var categoryRules = []categoryRule{
	{"wordpress", []string{"wp-", "wordpress", "wp/", "wp-login", "wp-admin"}},
	{"admin_panels", []string{"admin", "administrator", "adm", "siteadmin", "panel", "console"}},
	{"e_commerce", []string{"shop", "store", "cart", "checkout", "product", "magento", "shopify", "woocommerce"}},
	{"additional_cms", []string{"joomla", "drupal", "typo3", "cms", "content"}},
	{"forums_and_boards", []string{"forum", "board", "community", "discourse", "phpbb", "vbulletin"}},
	{"file_sharing", []string{"upload", "file", "share", "download", "ftp", "webdav"}},
	{"database_endpoints", []string{"phpmyadmin", "pma", "mysql", "database", "db", "sql", "mongo"}},
	{"mail_servers", []string{"mail", "webmail", "smtp", "imap", "roundcube", "squirrelmail"}},
	{"remote_access", []string{"ssh", "telnet", "rdp", "vnc", "remote"}},
	{"iot_devices", []string{"iot", "device", "router", "camera", "dvr", "smart"}},
	{"devops_tools", []string{"jenkins", "gitlab", "ci", "cd", "devops", "travis", "build"}},
	{"web_frameworks", []string{"laravel", "symfony", "django", "flask", "rails", "spring"}},
	{"logs_and_debug", []string{"log", "debug", "trace", "error"}},
	{"backdoors_and_shells", []string{"shell", "backdoor", "cmd", "command", "c99", "r57"}},
	{"injection_attempts", []string{"injection", "xss", "script", "eval"}},
	{"mobile_endpoints", []string{"api", "mobile", "app", "android", "ios", "endpoint"}},
	{"cloud_services", []string{"aws", "azure", "cloud", "s3", "bucket", "lambda"}},
	{"monitoring_tools", []string{"monitor", "grafana", "prometheus", "nagios", "zabbix"}},
}

// CategorizePath maps a request path to the decoy category it targets, or ""
// when no category matches.
func CategorizePath(path string) string {
	p := strings.ToLower(path)
	for _, rule := range categoryRules {
		for _, term := range rule.terms {
			if strings.Contains(p, term) {
				return rule.name
			}
		}
	}
	if strings.Contains(p, "cpanel") {
		return "admin_panels"
	}
	return ""
}
